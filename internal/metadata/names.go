package metadata

import (
	"os/user"
	"strconv"
	"sync"
)

// NameResolver maps numeric owner identifiers to account names.
type NameResolver interface {
	UserName(userID uint32) (string, bool)
	GroupName(groupID uint32) (string, bool)
}

type lookupFunction func(identifier string) (string, error)

// AccountNameResolver resolves names through the host account database and
// remembers every answer, including misses.
type AccountNameResolver struct {
	mutex       sync.Mutex
	users       map[uint32]string
	groups      map[uint32]string
	lookupUser  lookupFunction
	lookupGroup lookupFunction
}

// NewAccountNameResolver constructs a resolver backed by os/user.
func NewAccountNameResolver() *AccountNameResolver {
	return &AccountNameResolver{
		users:  make(map[uint32]string),
		groups: make(map[uint32]string),
		lookupUser: func(identifier string) (string, error) {
			account, lookupError := user.LookupId(identifier)
			if lookupError != nil {
				return "", lookupError
			}
			return account.Username, nil
		},
		lookupGroup: func(identifier string) (string, error) {
			group, lookupError := user.LookupGroupId(identifier)
			if lookupError != nil {
				return "", lookupError
			}
			return group.Name, nil
		},
	}
}

// UserName returns the login name for userID.
func (resolver *AccountNameResolver) UserName(userID uint32) (string, bool) {
	return resolver.resolve(resolver.users, resolver.lookupUser, userID)
}

// GroupName returns the group name for groupID.
func (resolver *AccountNameResolver) GroupName(groupID uint32) (string, bool) {
	return resolver.resolve(resolver.groups, resolver.lookupGroup, groupID)
}

func (resolver *AccountNameResolver) resolve(cache map[uint32]string, lookup lookupFunction, identifier uint32) (string, bool) {
	resolver.mutex.Lock()
	defer resolver.mutex.Unlock()

	if name, cached := cache[identifier]; cached {
		return name, len(name) > 0
	}
	name, lookupError := lookup(strconv.FormatUint(uint64(identifier), 10))
	if lookupError != nil {
		name = ""
	}
	cache[identifier] = name
	return name, len(name) > 0
}
