// Package telegram is the chat transport. Bot polls updates and routes
// commands, URLs and inline-button callbacks into the workflow and the
// settings gate. StatusNotifier renders one status message per job and edits
// it in place; Uploader delivers the encoded file.
//
// The workflow package never imports this one; Bot depends on the workflow
// through the Workflow interface and StatusNotifier/Uploader satisfy the
// workflow's Notifier and Uploader interfaces.
package telegram
