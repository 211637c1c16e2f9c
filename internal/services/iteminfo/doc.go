// Package iteminfo fetches current product details from the item-info
// service. Responses are accepted in either the canonical field names or the
// legacy asin/isbn10/isbn13 names.
package iteminfo
