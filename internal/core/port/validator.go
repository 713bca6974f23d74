package port

// StatementValidator checks rendered SQL before it reaches the database.
type StatementValidator interface {
	Validate(sql string) error
}
