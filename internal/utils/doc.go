// Package utils provides small generic helpers shared across the application.
package utils
