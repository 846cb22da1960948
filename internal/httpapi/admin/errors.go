package admin

import "fmt"

func errNotFound(name string) error {
	return fmt.Errorf("not found: %s", name)
}
