// Package queue defines message payloads exchanged over the message broker
// together with the publisher and consumer for them.
package queue

import "time"

// PasswordResetRequestedEvent is published when a reset token is issued for
// an existing account. It carries everything the mail consumer needs so it
// never has to query the primary database. The token is the plaintext value;
// the queue is internal to the deployment.
type PasswordResetRequestedEvent struct {
	AccountID   string    `json:"accountId"`
	Email       string    `json:"email"`
	FullName    string    `json:"fullName"`
	Token       string    `json:"token"`
	ExpiresAt   time.Time `json:"expiresAt"`
	RequestedAt time.Time `json:"requestedAt"`
}
