package diagram

import (
	"fmt"
	"strings"

	"archdiagram/pkg"
)

// catalog is the closed set of node kinds a diagram may contain.
// Extending it is a code change.
var catalog = map[pkg.NodeKind]pkg.NodeDescriptor{
	pkg.KindEC2: {
		Kind:      pkg.KindEC2,
		Name:      "EC2",
		Provider:  "aws",
		Category:  "compute",
		Shape:     "box3d",
		FillColor: "#F58536",
	},
	pkg.KindRDS: {
		Kind:      pkg.KindRDS,
		Name:      "RDS",
		Provider:  "aws",
		Category:  "database",
		Shape:     "cylinder",
		FillColor: "#3B48CC",
	},
	pkg.KindALB: {
		Kind:      pkg.KindALB,
		Name:      "ALB",
		Provider:  "aws",
		Category:  "network",
		Shape:     "hexagon",
		FillColor: "#8C4FFF",
	},
	pkg.KindUser: {
		Kind:      pkg.KindUser,
		Name:      "User",
		Provider:  "onprem",
		Category:  "client",
		Shape:     "ellipse",
		FillColor: "#DDDDDD",
	},
}

// kindOrder fixes the listing order of the catalog
var kindOrder = []pkg.NodeKind{pkg.KindEC2, pkg.KindRDS, pkg.KindALB, pkg.KindUser}

var kindsByName = func() map[string]pkg.NodeKind {
	m := make(map[string]pkg.NodeKind, len(catalog))
	for kind, desc := range catalog {
		m[desc.Name] = kind
	}
	return m
}()

// Resolve maps a type name to its node kind. Names are case-sensitive.
func Resolve(typeName string) (pkg.NodeKind, error) {
	kind, ok := kindsByName[typeName]
	if !ok {
		return pkg.KindUnknown, fmt.Errorf("%w: %s (supported types: %s)",
			ErrUnknownType, typeName, strings.Join(TypeNames(), ", "))
	}
	return kind, nil
}

// Describe returns the render descriptor of a kind
func Describe(kind pkg.NodeKind) (pkg.NodeDescriptor, bool) {
	desc, ok := catalog[kind]
	return desc, ok
}

// Kinds returns every catalog kind in stable order
func Kinds() []pkg.NodeKind {
	kinds := make([]pkg.NodeKind, len(kindOrder))
	copy(kinds, kindOrder)
	return kinds
}

// TypeNames returns the catalog type names in stable order
func TypeNames() []string {
	names := make([]string, 0, len(kindOrder))
	for _, kind := range kindOrder {
		names = append(names, catalog[kind].Name)
	}
	return names
}
