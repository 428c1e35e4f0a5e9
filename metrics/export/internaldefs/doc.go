// Package internaldefs holds the shared metric name table and bucket
// layout used by the exporter packages. Not intended for direct import
// by applications.
package internaldefs
