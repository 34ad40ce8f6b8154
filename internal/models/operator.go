package models

// UnknownOperator is the credential pair sent to the login and register routes.
type UnknownOperator struct {
	Login    *string `json:"login"`
	Password *string `json:"password"`
}

type Operator struct {
	ID    string
	Login string
	Hash  string
}
