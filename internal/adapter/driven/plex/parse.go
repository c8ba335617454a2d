package plex

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Known spellings of each PIN field across Plex v1 response shapes, in the order
// they are tried.
var (
	idFields        = []string{"id"}
	codeFields      = []string{"code"}
	expiresInFields = []string{"expiresIn", "expires_in", "expires-in"}
	tokenFields     = []string{"authToken", "auth_token", "auth-token"}
)

// xmlNode is a schema-less XML element. Plex returns PIN fields either as
// attributes on the root (<Pin id=".." code="..">) or as child elements
// (<pin><id>..</id><code>..</code></pin>).
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []xmlNode  `xml:",any"`
	Text     string     `xml:",chardata"`
}

func parseNode(body []byte) (xmlNode, error) {
	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return xmlNode{}, fmt.Errorf("decode pin xml: %w", err)
	}
	return root, nil
}

// firstField is the single normalization point for PIN fields. It returns the
// first non-empty value among names, looking at root attributes first and then
// at direct child elements. Empty elements such as <auth_token nil="true"/>
// count as absent.
func firstField(n xmlNode, names ...string) string {
	for _, name := range names {
		for _, a := range n.Attrs {
			if a.Name.Local == name {
				if v := strings.TrimSpace(a.Value); v != "" {
					return v
				}
			}
		}
	}
	for _, name := range names {
		for _, c := range n.Children {
			if c.XMLName.Local == name {
				if v := strings.TrimSpace(c.Text); v != "" {
					return v
				}
			}
		}
	}
	return ""
}
