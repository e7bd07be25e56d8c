// Package optimistic runs a local state change ahead of the remote call that
// confirms it, and undoes the change when the call fails.
package optimistic

import "context"

// Do applies a tentative local mutation, runs call, and reverts on error.
// apply returns the function that restores the pre-call state. The error
// from call is returned unchanged so the caller can show it.
func Do(ctx context.Context, apply func() (revert func()), call func(ctx context.Context) error) error {
	revert := apply()
	if err := call(ctx); err != nil {
		if revert != nil {
			revert()
		}
		return err
	}
	return nil
}

// Value runs Do for calls that return the authoritative result. commit
// receives that result after a successful call.
func Value[T any](ctx context.Context, apply func() (revert func()), call func(ctx context.Context) (T, error), commit func(T)) error {
	var result T
	err := Do(ctx, apply, func(ctx context.Context) error {
		var err error
		result, err = call(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if commit != nil {
		commit(result)
	}
	return nil
}
