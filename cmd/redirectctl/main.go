// Redirectctl operates the redirect engine directly against the store.
//
// Usage:
//
//	# Dry-run a request as a crawler would see it
//	redirectctl test old-example.com /blog/post --ua "Googlebot/2.1"
//
//	# Rewrite proxy configuration and reload the proxy
//	redirectctl regen
//
//	# Print the config file a domain would get
//	redirectctl preview old-example.com
//
//	# Bulk import backlinks from a CSV export
//	redirectctl import old-example.com backlinks.csv
package main

func main() {
	Execute()
}
