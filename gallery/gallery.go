// Package gallery keeps the registered faces: an ordered name to
// descriptor mapping and the directory it is persisted in.
package gallery

import "github.com/abihf/absensi/facerec"

// Unknown is the name given to a face that matches nobody.
const Unknown = "Unknown"

// Gallery maps identity names to descriptors, iterating in insertion order.
type Gallery struct {
	names []string
	descs []facerec.Descriptor
	index map[string]int
}

func New() *Gallery {
	return &Gallery{index: make(map[string]int)}
}

// Put inserts or overwrites an identity. An overwritten name keeps its
// original position.
func (g *Gallery) Put(name string, desc facerec.Descriptor) {
	if i, ok := g.index[name]; ok {
		g.descs[i] = desc
		return
	}
	g.index[name] = len(g.names)
	g.names = append(g.names, name)
	g.descs = append(g.descs, desc)
}

func (g *Gallery) Get(name string) (facerec.Descriptor, bool) {
	i, ok := g.index[name]
	if !ok {
		return facerec.Descriptor{}, false
	}
	return g.descs[i], true
}

func (g *Gallery) Len() int {
	return len(g.names)
}

func (g *Gallery) Names() []string {
	return append([]string(nil), g.names...)
}

// Match returns the name of the closest registered face if it lies within
// tolerance, Unknown otherwise.
func (g *Gallery) Match(desc facerec.Descriptor, tolerance float64) string {
	name, _ := g.Nearest(desc, tolerance)
	return name
}

// Nearest is Match that also reports the distance to the closest
// registered face. The distance is meaningless for an empty gallery.
func (g *Gallery) Nearest(desc facerec.Descriptor, tolerance float64) (string, float64) {
	i, dist := facerec.Nearest(&desc, g.descs)
	if i == -1 || dist > tolerance {
		return Unknown, dist
	}
	return g.names[i], dist
}
