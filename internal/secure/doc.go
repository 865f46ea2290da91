// Package secure keeps secret values out of ordinary Go memory while akv
// passes them between the Azure backend and the terminal.
//
// Values fetched for `show` or sent by `add`/`edit` live in a memguard
// enclave (encrypted at rest in memory, mlocked where the platform allows)
// and are only decrypted for the moment they are written out. They are never
// handed to the name cache.
//
// Call memguard.Purge (or secure.Purge) before the process exits to wipe
// anything still held.
package secure
