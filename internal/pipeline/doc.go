// Package pipeline drives a deck build: extraction, output preparation, one
// render per lesson (discover, order, resolve, invoke) and the optional index
// page. Builds are strictly sequential; the failure policy decides whether the
// first failed lesson stops the build or the remaining lessons still render.
package pipeline
