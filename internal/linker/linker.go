// Package linker plants and removes the symbolic links that make up a deployment.
package linker

// Linker deploys and undeploys mod files to game directories
type Linker interface {
	Deploy(src, dst string) error
	Undeploy(dst string) error
	IsDeployed(dst string) (bool, error)
	Target(dst string) (string, error)
}

// New creates the default linker
func New() Linker {
	return NewSymlink()
}
