// Package internal holds small primitives shared by the engine and its
// sub-packages: session token and throwaway password generation.
//
// Nothing here is part of the public API.
package internal
