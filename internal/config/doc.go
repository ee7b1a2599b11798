// Package config defines the format-agnostic record set produced by the
// ingestion loaders, and the Loader interface they implement.
//
// A Model is what the engine consumes: node records, mechanism specs,
// consolidations and named interventions. Concrete loaders for HCL and YAML
// live in their own packages and are combined with MultiLoader.
package config
