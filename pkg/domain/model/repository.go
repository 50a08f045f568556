package model

import "strings"

type Repository struct {
	Owner string
	Name  string
}

func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// ParseRepository parses "owner/name". It returns an empty Repository for
// anything else.
func ParseRepository(fullName string) Repository {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}
	}
	return Repository{Owner: owner, Name: name}
}
