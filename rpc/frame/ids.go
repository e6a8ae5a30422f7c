package frame

import "github.com/google/uuid"

// IDSource hands out correlation ids, ids must not collide while they are outstanding
type IDSource interface {
	NewID() uuid.UUID
}

// RandomIDs is the default IDSource, it returns random (version 4) uuids
var RandomIDs IDSource = randomIDs{}

type randomIDs struct{}

func (randomIDs) NewID() uuid.UUID {
	return uuid.New()
}

// IDFunc adapts a plain function to an IDSource
type IDFunc func() uuid.UUID

func (f IDFunc) NewID() uuid.UUID {
	return f()
}
