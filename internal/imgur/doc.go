// Package imgur implements the image source: an Imgur gallery API client
// combined with a bounded FIFO dedup window of recently shown image IDs.
package imgur
