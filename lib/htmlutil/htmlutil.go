package htmlutil

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// GetText returns the concatenated text content of a node and all of
// its descendants.
func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// Attr returns the value of the named attribute, or the empty string
// when the node does not carry it.
func Attr(node *html.Node, name string) string {
	if node == nil {
		return ""
	}
	for _, a := range node.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// NormalizeText collapses whitespace runs and trims the result. Scraped
// cells frequently carry layout newlines and tabs that are meaningless
// to the protocol.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
