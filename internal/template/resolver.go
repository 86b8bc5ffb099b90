package template

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrResourceNotFound indicates that no function resource declares the requested handler.
	ErrResourceNotFound = errors.New("no function resource matches the requested handler")

	// ErrAmbiguousResource indicates that more than one function resource declares the requested handler.
	ErrAmbiguousResource = errors.New("multiple function resources match the requested handler")
)

// Resolve locates the unique function resource that declares handlerName as
// its entry point. Zero matches and multiple matches are both caller input
// errors, not silent defaults.
func Resolve(tpl *Template, handlerName string) (FunctionResource, error) {
	var matches []FunctionResource

	for identifier, resource := range tpl.Resources {
		if resource.Type != ServerlessFunctionType {
			continue
		}
		if resource.Properties.Handler != handlerName {
			continue
		}

		codeUri := resource.Properties.CodeUri
		if codeUri != "" && !filepath.IsAbs(codeUri) {
			codeUri = filepath.Join(tpl.Dir, codeUri)
		}

		matches = append(matches, FunctionResource{
			Identifier: identifier,
			Runtime:    resource.Properties.Runtime,
			CodeUri:    codeUri,
			Handler:    resource.Properties.Handler,
		})
	}

	switch len(matches) {
	case 0:
		return FunctionResource{}, fmt.Errorf("%w (handler '%s')", ErrResourceNotFound, handlerName)
	case 1:
		return matches[0], nil
	default:
		identifiers := make([]string, 0, len(matches))
		for _, m := range matches {
			identifiers = append(identifiers, m.Identifier)
		}
		sort.Strings(identifiers)
		return FunctionResource{}, fmt.Errorf("%w (handler '%s' is declared by %s)",
			ErrAmbiguousResource, handlerName, strings.Join(identifiers, ", "))
	}
}
