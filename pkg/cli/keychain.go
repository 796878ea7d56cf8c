package cli

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/keybase/dbus"
	"github.com/keybase/go-keychain/secretservice"
)

const (
	service        = "bag-tracker"
	collection     = secretservice.DefaultCollection
	keychainPrefix = "keychain:"
)

// lookupFunc returns the secret stored under element.
type lookupFunc func(element string) (string, error)

// FillKeychainValues replaces every string field of args (embedded and nested
// structs included) whose value is "keychain:<element>" with the secret
// stored for <element> in the Secret Service. The service is only contacted
// when at least one such field exists.
func FillKeychainValues[T any](args *T) error {
	var ss *secretService
	return fillValues(reflect.ValueOf(args).Elem(), func(element string) (string, error) {
		if ss == nil {
			var err error
			if ss, err = openSecretService(); err != nil {
				return "", fmt.Errorf("init secret service: %v", err)
			}
		}
		return ss.lookup(element)
	})
}

func fillValues(v reflect.Value, lookup lookupFunc) error {
	for i := 0; i < v.NumField(); i++ {
		f := v.Field(i)
		switch f.Kind() {
		case reflect.Struct:
			if err := fillValues(f, lookup); err != nil {
				return err
			}
		case reflect.Pointer:
			if !f.IsNil() && f.Elem().Kind() == reflect.Struct {
				if err := fillValues(f.Elem(), lookup); err != nil {
					return err
				}
			}
		case reflect.String:
			if !strings.HasPrefix(f.String(), keychainPrefix) {
				continue
			}
			if !f.CanSet() {
				return fmt.Errorf("set value for field %s", v.Type().Field(i).Name)
			}
			secret, err := lookup(strings.TrimPrefix(f.String(), keychainPrefix))
			if err != nil {
				return err
			}
			f.SetString(secret)
		}
	}
	return nil
}

type secretService struct {
	svc     *secretservice.SecretService
	session *secretservice.Session
}

func openSecretService() (*secretService, error) {
	svc, err := secretservice.NewService()
	if err != nil {
		return nil, fmt.Errorf("create keychain service: %v", err)
	}
	if err := svc.Unlock([]dbus.ObjectPath{collection}); err != nil {
		return nil, fmt.Errorf("unlock keychain service: %v", err)
	}
	session, err := svc.OpenSession(secretservice.AuthenticationDHAES)
	if err != nil {
		return nil, fmt.Errorf("open session: %v", err)
	}
	if session == nil {
		return nil, fmt.Errorf("no session")
	}
	return &secretService{svc: svc, session: session}, nil
}

func (s *secretService) lookup(element string) (string, error) {
	items, err := s.svc.SearchCollection(collection, secretservice.Attributes{
		"service": service,
		"element": element,
	})
	if err != nil {
		return "", fmt.Errorf("search keychain element: %v", err)
	}
	if len(items) < 1 {
		return "", fmt.Errorf("keychain element %s not found", element)
	}
	if len(items) > 1 {
		return "", fmt.Errorf("found more than one keychain elements for %s", element)
	}
	secret, err := s.svc.GetSecret(items[0], *s.session)
	if err != nil {
		return "", fmt.Errorf("get value from keychain: %v", err)
	}
	return string(secret), nil
}
