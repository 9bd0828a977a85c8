// Package aggregates owns transaction boundaries and the classification of
// storage errors into aggregate error codes.
package aggregates
