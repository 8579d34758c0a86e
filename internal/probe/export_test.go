package probe

// SetRemoveAll swaps the workspace removal function and returns a restore func.
func SetRemoveAll(f func(string) error) func() {
	original := removeAll
	removeAll = f
	return func() { removeAll = original }
}
