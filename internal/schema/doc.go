// Package schema declares the keys an application expects in a YAML file so
// they can be registered before a configuration tree is loaded, and checks the
// loaded values against the declared integer, string, or boolean types.
package schema
