package types

type contextKey string

const PrincipalKey contextKey = "principal"
