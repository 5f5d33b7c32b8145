// Package tracker mints tracking tokens for outbound emails and records the
// opens and clicks that come back.
//
// A token is minted per send and embedded in the pixel URL and in every
// rewritten link. Engagement events are append-only and never deduplicated;
// ten opens are ten events, because frequency is the signal.
package tracker
