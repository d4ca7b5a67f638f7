// Package storage manages pinback's on-disk output.
//
// Manager maps bookmark ids onto directories below the output directory
// and answers whether a bookmark has already been archived. A bookmark
// counts as archived as soon as its directory exists, which makes
// repeated runs skip work already done.
//
// WriteFileAtomic and SaveAtomic write through a temporary file in the
// destination directory followed by a rename.
package storage
