package handlers

import (
	"github.com/adil/docexchange-backend/broker"
	"github.com/adil/docexchange-backend/mailer"
	"github.com/adil/docexchange-backend/storage"
	"github.com/adil/docexchange-backend/token"
)

// Package-level collaborators, wired once from main.
var (
	downloadBroker *broker.Broker
	tokenStore     *token.Store
	blobs          storage.Store
	mail           mailer.Mailer
	baseURL        string
)

func Init(b *broker.Broker, tokens *token.Store, store storage.Store, m mailer.Mailer, base string) {
	downloadBroker = b
	tokenStore = tokens
	blobs = store
	mail = m
	baseURL = base
}
