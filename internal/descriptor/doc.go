// Package descriptor resolves declarative library packaging descriptors
// (plugins, coordinates, repositories, scoped dependencies, toolchain and
// publication settings) into normalized, immutable Descriptor values that
// downstream build and publish tooling can consume.
package descriptor
