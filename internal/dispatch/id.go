package dispatch

import "github.com/google/uuid"

// newListenerID mints a unique id for each registered listener.
func newListenerID() string {
	return uuid.NewString()
}
