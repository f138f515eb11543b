package ratelimit

import (
	"strings"
	"time"
)

// Class is a route class with its own ceiling.
type Class string

const (
	ClassAuth    Class = "auth"
	ClassAPI     Class = "api"
	ClassDefault Class = "default"
)

// Classes maps each route class to its limit.
type Classes map[Class]Config

// DefaultClasses returns the built-in limits: 10/min for authentication
// paths, 60/min for the API, 100/min for everything else.
func DefaultClasses() Classes {
	return Classes{
		ClassAuth:    {Requests: 10, Window: time.Minute},
		ClassAPI:     {Requests: 60, Window: time.Minute},
		ClassDefault: {Requests: 100, Window: time.Minute},
	}
}

// For returns the limit of class c, falling back to the default class.
func (cs Classes) For(c Class) Config {
	if cfg, ok := cs[c]; ok {
		return cfg
	}
	return cs[ClassDefault]
}

// Classify returns the route class of a request path.
func Classify(path string) Class {
	switch {
	case strings.HasPrefix(path, "/api/auth"), path == "/login", path == "/register":
		return ClassAuth
	case strings.HasPrefix(path, "/api/"):
		return ClassAPI
	default:
		return ClassDefault
	}
}

// IsStaticAsset reports whether path bypasses the limiter: bundler and
// static prefixes, or anything that looks like a file name.
func IsStaticAsset(path string) bool {
	return strings.HasPrefix(path, "/_next") ||
		strings.HasPrefix(path, "/static") ||
		strings.Contains(path, ".")
}

// Key builds the limiter key for a client in a route class.
func Key(clientIP string, c Class) string {
	return clientIP + ":" + string(c)
}
