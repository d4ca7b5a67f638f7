// Package checkpoint saves the result of a complete crawl so that
// `pinback archive --resume` can skip straight to downloading.
//
// Only finished crawls are saved; a crawl that fails part way leaves no
// checkpoint behind. The file lives in the user's data directory
// ($XDG_DATA_HOME/pinback/checkpoints on Linux) and is removed after a run
// in which every job succeeded or was skipped.
package checkpoint
