//go:build darwin

package internal

import (
	"fmt"
	"strings"

	"github.com/keybase/go-keychain"
)

// keyringPassphrase reads a database passphrase from the macOS
// keychain. ref is "service/account" as configured by keyring_N.
func keyringPassphrase(ref string) (string, error) {
	service, account, ok := strings.Cut(ref, "/")
	if !ok {
		return "", fmt.Errorf("keyring reference %q: want service/account", ref)
	}

	query := keychain.NewItem()
	query.SetSecClass(keychain.SecClassGenericPassword)
	query.SetService(service)
	query.SetAccount(account)
	query.SetMatchLimit(keychain.MatchLimitOne)
	query.SetReturnData(true)

	results, err := keychain.QueryItem(query)
	if err != nil {
		return "", fmt.Errorf("keychain: %w", err)
	}
	if len(results) != 1 {
		return "", fmt.Errorf("keychain: no item for %s/%s", service, account)
	}
	return string(results[0].Data), nil
}
