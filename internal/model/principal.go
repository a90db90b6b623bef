package model

import "github.com/google/uuid"

// Principal identifies the caller an account belongs to.
type Principal uuid.UUID

// Anonymous is the principal of an unauthenticated caller.
var Anonymous = Principal(uuid.Nil)

func NewPrincipal() Principal {
	return Principal(uuid.New())
}

func ParsePrincipal(s string) (Principal, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Anonymous, err
	}
	return Principal(id), nil
}

func (p Principal) IsAnonymous() bool {
	return p == Anonymous
}

func (p Principal) String() string {
	return uuid.UUID(p).String()
}

func (p Principal) MarshalText() ([]byte, error) {
	return uuid.UUID(p).MarshalText()
}

func (p *Principal) UnmarshalText(data []byte) error {
	return (*uuid.UUID)(p).UnmarshalText(data)
}
