package config

import (
	"sort"
	"strings"
)

// Cors only ever allows the single-page client origin, with credentials
type Cors struct {
	origins AllowedOrigins
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[strings.TrimSuffix(origin, "/")]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	sort.Strings(origins)
	return strings.Join(origins, ", ")
}

func (c Cors) GetAllowedOrigins() AllowedOrigins {
	allowed := AllowedOrigins{}
	for origin := range c.origins {
		allowed[strings.TrimSuffix(origin, "/")] = nullValue{}
	}
	return allowed
}

func (Cors) GetAllowedMethods() string {
	return "GET"
}

func (Cors) GetAllowedHeaders() string {
	return "Authorization, Accept, Content-Type"
}
