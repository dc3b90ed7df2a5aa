package classifier

import "strings"

type Category string

const (
	Recyclable    Category = "recyclable"
	Biodegradable Category = "biodegradable"
	Hazardous     Category = "hazardous"
)

// Categories em ordem de prioridade: é também a ordem de desempate.
var Categories = []Category{Recyclable, Biodegradable, Hazardous}

func (c Category) Valid() bool {
	switch c {
	case Recyclable, Biodegradable, Hazardous:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	return c, c.Valid()
}
