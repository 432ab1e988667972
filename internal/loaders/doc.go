// Package loaders provides the Document Loader: implementations of the
// Loader interface for each supported file format, and the registry that
// picks one by file extension.
//
// Loaders are registered with the Registry at startup.
package loaders
