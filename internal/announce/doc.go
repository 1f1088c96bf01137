// Package announce validates and publishes the device discovery payload.
//
// The payload is a JSON object with a device descriptor and a non-empty
// component map ("cmps"). It is checked twice before publishing: once for
// JSON syntax and once against an embedded JSON schema for the required
// sections. A payload failing either check is reported and skipped; the
// caller carries on without it.
//
// A valid payload is published retained at QoS 1 to
// <discovery_prefix>/device/<device_id>/config, at most once per session.
//
// Build assembles a payload from a static template plus the component
// blocks of the entity table.
package announce
