// Package hcloud lists template snapshots on Hetzner Cloud.
//
// Templates are the project's own snapshot images (type=snapshot), the
// Hetzner equivalent of "images owned by self". A snapshot's template name is
// its description, or its numeric ID when the description is blank.
//
// The API token comes from the provider's credentials or, failing that, the
// HCLOUD_TOKEN environment variable.
package hcloud
