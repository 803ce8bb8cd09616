// Package configserver serves YAML property files over HTTP.
//
// GET /{application}/{profile} answers with the property sources built from
// {application}-{profile}.yaml and {application}.yaml in the configured
// directory. Nested keys are flattened with dots.
package configserver
