// Package voxel defines what the column compressor needs from a voxel type: equality and a stable
// bijection to a 16-bit registry code. The registry itself lives with the caller.
package voxel

// Type is satisfied by any comparable voxel type that maps one-to-one onto a 16-bit code.
type Type interface {
	comparable
	Code() uint16
}

// Code is a raw registry code used directly as a voxel type.
type Code uint16

// Code returns the registry code.
func (c Code) Code() uint16 { return uint16(c) }

// FromCode is the inverse of Code.Code.
func FromCode(c uint16) Code { return Code(c) }
