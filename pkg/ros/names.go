package ros

import (
	"fmt"
	"strings"
)

// ResolveName turns a name from the node's private handle into a global
// graph name. Names starting with '/' are already global. Everything else,
// with or without a leading '~', lives under /namespace/node.
func ResolveName(namespace, node, name string) string {
	if strings.HasPrefix(name, "/") {
		return name
	}
	name = strings.TrimPrefix(strings.TrimPrefix(name, "~"), "/")
	return joinName(joinName(namespace, node), name)
}

// NodePath returns the global name of the node itself.
func NodePath(namespace, node string) string {
	return joinName(namespace, node)
}

func joinName(parent, child string) string {
	parent = strings.TrimSuffix(parent, "/")
	if !strings.HasPrefix(parent, "/") {
		parent = "/" + parent
	}
	if parent == "/" {
		return "/" + child
	}
	return fmt.Sprintf("%s/%s", parent, child)
}
