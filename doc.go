/*
Package bongo maps documents of a document database to Go types.

An application defines its document types against a Session:

	type Article struct {
		bongo.Document
	}

	type Author struct {
		bongo.Document
	}

	var (
		sess     = bongo.NewSession(bongo.Options{})
		Articles = bongo.Define[Article](sess, "articles", bongo.WithOrdering(bongo.Desc("created")))
		Authors  = bongo.Define[Author](sess, "authors")
	)

and binds a database once at startup:

	db, err := boltdb.Open("blog.db", boltdb.Options{})
	...
	sess.Bind(db)

Managers then query and save documents:

	a := Articles.New(map[string]any{"title": "Hello", "author": author})
	err := a.Save(ctx)

	c, err := Articles.Find(ctx, bongo.Filter{"tags": "go"})
	for c.Next(ctx) {
		fmt.Println(c.Doc().Get("title"))
	}

# Records and proxies

A document wraps one driver.Record. Get wraps nested mappings and sequences
into Map and List, which share storage with the record: writes through a
proxy are visible in the record and vice versa. Equal compares proxies,
documents and plain data structurally.

# References

A document stored in a field of another document is saved as a driver.Ref
pointing at it. Unsaved nested documents are saved first. When read back,
the field holds the Ref until Resolve fetches the target, which is then
kept in the record.

# Drivers

The driver package defines the contract; memdb, boltdb and mongodb
implement it.
*/
package bongo
