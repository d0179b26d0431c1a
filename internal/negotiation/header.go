package negotiation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dunglas/httpsfv"
)

// Header names.
const (
	ClientHeader      = "Cartsync-Client"
	ServerHeader      = "Cartsync-Server"
	CacheStatusHeader = "Cache-Status"
)

// CacheName identifies this service in Cache-Status entries.
const CacheName = "cartsync"

// ParseClientHeader parses a Cartsync-Client dictionary.
//
// Examples:
//   - version="v1.2.0"                 → {Version: v1.2.0}
//   - version="1.2.0", name="cartctl"  → {Version: v1.2.0, Name: cartctl}
//   - version="v1.2.0";build=7         → {Version: v1.2.0} (params ignored)
//
// Returns error if the header is empty, malformed, or has no string version.
func ParseClientHeader(header string) (*ClientInfo, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, errors.New("empty Cartsync-Client header")
	}

	dict, err := httpsfv.UnmarshalDictionary([]string{header})
	if err != nil {
		return nil, fmt.Errorf("invalid Cartsync-Client header: %w", err)
	}

	version, err := stringMember(dict, "version")
	if err != nil {
		return nil, err
	}
	info := &ClientInfo{Version: NormalizeVersion(version)}

	if _, ok := dict.Get("name"); ok {
		if info.Name, err = stringMember(dict, "name"); err != nil {
			return nil, err
		}
	}
	return info, nil
}

// FormatClientHeader serializes info as a Cartsync-Client dictionary.
func FormatClientHeader(info ClientInfo) (string, error) {
	dict := httpsfv.NewDictionary()
	dict.Add("version", httpsfv.NewItem(info.Version))
	if info.Name != "" {
		dict.Add("name", httpsfv.NewItem(info.Name))
	}
	return httpsfv.Marshal(dict)
}

func stringMember(dict *httpsfv.Dictionary, key string) (string, error) {
	member, ok := dict.Get(key)
	if !ok {
		return "", fmt.Errorf("%s key not found in Cartsync-Client header", key)
	}
	item, ok := member.(httpsfv.Item)
	if !ok {
		return "", fmt.Errorf("%s value must be an item", key)
	}
	s, ok := item.Value.(string)
	if !ok {
		return "", fmt.Errorf("%s value must be a string", key)
	}
	return s, nil
}

// CacheStatus describes how a cart read was served.
type CacheStatus struct {
	// Hit is true when the response came from the mirror.
	Hit bool
	// Stored is true when a fresh backend response was written to the mirror.
	Stored bool
	// Detail explains a hit, e.g. "backend unreachable".
	Detail string
}

// FormatCacheStatus renders an RFC 9211 Cache-Status member for this service:
//
//	cartsync; hit; detail="backend unreachable"
//	cartsync; fwd=miss; stored
func FormatCacheStatus(cs CacheStatus) (string, error) {
	item := httpsfv.NewItem(httpsfv.Token(CacheName))
	if cs.Hit {
		item.Params.Add("hit", true)
	} else {
		item.Params.Add("fwd", httpsfv.Token("miss"))
		if cs.Stored {
			item.Params.Add("stored", true)
		}
	}
	if cs.Detail != "" {
		item.Params.Add("detail", cs.Detail)
	}
	return httpsfv.Marshal(httpsfv.List{item})
}

// ParseCacheStatus finds this service's member in a Cache-Status list.
// The last cartsync member wins; returns false if there is none.
func ParseCacheStatus(header string) (CacheStatus, bool, error) {
	var cs CacheStatus
	if strings.TrimSpace(header) == "" {
		return cs, false, nil
	}

	list, err := httpsfv.UnmarshalList([]string{header})
	if err != nil {
		return cs, false, fmt.Errorf("invalid Cache-Status header: %w", err)
	}

	found := false
	for _, member := range list {
		item, ok := member.(httpsfv.Item)
		if !ok {
			continue
		}
		if tok, ok := item.Value.(httpsfv.Token); !ok || tok != CacheName {
			continue
		}
		found = true
		cs = CacheStatus{}
		if v, ok := item.Params.Get("hit"); ok {
			cs.Hit, _ = v.(bool)
		}
		if v, ok := item.Params.Get("stored"); ok {
			cs.Stored, _ = v.(bool)
		}
		if v, ok := item.Params.Get("detail"); ok {
			cs.Detail, _ = v.(string)
		}
	}
	return cs, found, nil
}
