// Package s3 lists VM image templates stored in an S3-compatible object
// store bucket.
//
// Images are stored one directory per template below an optional prefix,
// e.g. templates/cfme-5.10.0.33-20190312/disk.qcow2. The template name is
// the first path segment below the prefix of every key carrying a disk image
// extension.
package s3
