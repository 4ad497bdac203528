// Package connectors fetches lab-report mail from provider inboxes and
// stores the raw messages for the processing pipeline. Which messages
// count as lab reports is decided by the mailbox label the deployment
// points the listener at, not by content sniffing here.
package connectors

import "hemindex/internal"

type MailConnector interface {
	FetchInbox(label string, max int) ([]internal.FetchedMailMessage, error)
}
