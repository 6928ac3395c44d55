package feed

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/robotomize/eurofx"
	"github.com/robotomize/eurofx/internal/strutil"
	"golang.org/x/net/html/charset"
)

const xmlCubeElement = "Cube"

var xmlNodePool = sync.Pool{
	New: func() interface{} { return &XMLNode{} },
}

// decodeXML returns the decoding function. decodeXML parses the eurofxref
// xml in streaming mode and returns currency pairs by date
func decodeXML() decodeFunc {
	return func(b []byte, iterFunc func(entry eurofx.FeedEntry) error) error {
		if iterFunc == nil {
			return errMissingIterFunc
		}
		decoder := xml.NewDecoder(bytes.NewReader(b))
		decoder.CharsetReader = charset.NewReaderLabel
	TokenLoop:
		for {
			token, err := decoder.Token()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break TokenLoop
				}

				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					return fmt.Errorf("%w: %v", errDecodeToken, syntaxErr.Error())
				}

				return fmt.Errorf("decode token: %w", err)
			}

			tp, ok := token.(xml.StartElement)
			if !ok || tp.Name.Local != xmlCubeElement {
				continue TokenLoop
			}

			// The enclosing Cube carries no attributes, the dated ones do
			if len(tp.Attr) == 0 {
				continue TokenLoop
			}

			currNode := xmlNodePool.Get().(*XMLNode)
			currNode.reset()

			// Decode a piece of the tree into an XMLNode element, which represents the exchange rates for the day
			if err := decoder.DecodeElement(currNode, &tp); err != nil {
				xmlNodePool.Put(currNode)

				var syntaxErr *xml.SyntaxError
				if errors.As(err, &syntaxErr) {
					return fmt.Errorf("%w: %v", errDecodeToken, syntaxErr.Error())
				}

				return fmt.Errorf("decode element: %w", err)
			}

			entry := eurofx.FeedEntry{
				Date:  strutil.TrimToken(currNode.Time),
				Rates: make([]eurofx.FeedRate, 0, len(currNode.Rates)),
			}

			for _, r := range currNode.Rates {
				if r.Currency == "" && r.Rate == "" {
					continue
				}

				entry.Rates = append(entry.Rates, eurofx.FeedRate{
					Currency: r.Currency,
					Rate:     r.Rate,
				})
			}

			xmlNodePool.Put(currNode)

			if err := iterFunc(entry); err != nil {
				return fmt.Errorf("handle func: %w", err)
			}
		}

		return nil
	}
}

type XMLRate struct {
	Currency string `xml:"currency,attr"`
	Rate     string `xml:"rate,attr"`
}

type XMLNode struct {
	Time  string    `xml:"time,attr"`
	Rates []XMLRate `xml:"Cube"`
}

func (n *XMLNode) reset() {
	n.Time = ""
	n.Rates = n.Rates[:0]
}
