package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/juju/gnuflag"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/peternagy/mongoexplorer"
	"github.com/peternagy/mongoexplorer/internal/credential"
	"github.com/peternagy/mongoexplorer/internal/document"
	"github.com/peternagy/mongoexplorer/internal/types"
)

var errUsage = errors.New("wrong number of arguments")

// session is what a command runs against.
type session struct {
	app    *mongoexplorer.App
	server types.ServerConfiguration
	limit  int64
	out    io.Writer
}

// queryFlags are the flags of the read commands.
type queryFlags struct {
	filter     string
	projection string
	sort       string
	limit      int
}

type command struct {
	name    string
	args    []string
	purpose string
	query   bool
	run     func(s *session, q *queryFlags, args []string) error
}

func commandList() []command {
	return []command{
		{name: "ping", purpose: "check that the server answers", run: runPing},
		{name: "tree", purpose: "list databases and collections", run: runTree},
		{name: "uri", purpose: "print the connection string without its password", run: runURI},
		{name: "find", args: []string{"db", "collection"}, purpose: "find documents", query: true, run: runFind},
		{name: "aggregate", args: []string{"db", "collection", "pipeline"}, purpose: "run an aggregation pipeline", query: true, run: runAggregate},
		{name: "get", args: []string{"db", "collection", "id"}, purpose: "print the document with the given _id", run: runGet},
		{name: "update", args: []string{"db", "collection", "document"}, purpose: "insert or replace a document", run: runUpdate},
		{name: "delete", args: []string{"db", "collection", "id"}, purpose: "delete the document with the given _id", run: runDelete},
		{name: "drop-collection", args: []string{"db", "collection"}, purpose: "drop a collection", run: runDropCollection},
		{name: "drop-database", args: []string{"db"}, purpose: "drop a database", run: runDropDatabase},
	}
}

func lookupCommand(name string) (command, bool) {
	for _, c := range commandList() {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

// execute parses the command flags and arguments and runs the command.
func (c command) execute(s *session, args []string, stderr io.Writer) error {
	q := &queryFlags{limit: int(s.limit)}

	f := gnuflag.NewFlagSet(c.name, gnuflag.ContinueOnError)
	f.SetOutput(stderr)
	if c.query {
		f.StringVar(&q.filter, "filter", "", "Extended JSON filter")
		f.StringVar(&q.projection, "projection", "", "Extended JSON projection")
		f.StringVar(&q.sort, "sort", "", "Extended JSON sort")
		f.IntVar(&q.limit, "limit", q.limit, "maximum number of documents, 0 for no limit")
	}
	f.Usage = func() {
		fmt.Fprintf(stderr, "usage: mongoexplorer %s", c.name)
		for _, a := range c.args {
			fmt.Fprintf(stderr, " <%s>", a)
		}
		fmt.Fprintln(stderr)
		f.PrintDefaults()
	}
	if err := f.Parse(true, args); err != nil {
		return err
	}

	positional := f.Args()
	if len(positional) != len(c.args) {
		f.Usage()
		return fmt.Errorf("%w: want %s", errUsage, strings.Join(c.args, " "))
	}
	return c.run(s, q, positional)
}

func collectionArg(args []string) types.MongoCollection {
	return types.MongoCollection{DatabaseName: args[0], Name: args[1]}
}

func writeDocuments(w io.Writer, docs []bson.D) error {
	for _, doc := range docs {
		line, err := document.MarshalDocument(doc)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func runPing(s *session, _ *queryFlags, _ []string) error {
	if err := s.app.Connect(s.server); err != nil {
		return err
	}
	_, err := fmt.Fprintf(s.out, "ok %s\n", strings.Join(s.server.ServerURLs, ","))
	return err
}

func runTree(s *session, _ *queryFlags, _ []string) error {
	server, err := s.app.OpenServer(s.server)
	if err != nil {
		return err
	}
	for _, db := range server.Databases {
		fmt.Fprintln(s.out, db.Name)
		for _, coll := range db.Collections {
			fmt.Fprintf(s.out, "  %s\n", coll.Name)
		}
	}
	return nil
}

func runURI(s *session, _ *queryFlags, _ []string) error {
	_, err := fmt.Fprintln(s.out, credential.ConnectionURI(s.server, false))
	return err
}

func (q *queryFlags) options() (types.MongoQueryOptions, error) {
	opts := types.NewMongoQueryOptions()
	opts.ResultLimit = int64(q.limit)

	var err error
	if opts.Filter, err = document.ParseDocument(q.filter); err != nil {
		return opts, err
	}
	if q.projection != "" {
		if opts.Projection, err = document.ParseDocument(q.projection); err != nil {
			return opts, err
		}
	}
	if q.sort != "" {
		if opts.Sort, err = document.ParseDocument(q.sort); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

func runFind(s *session, q *queryFlags, args []string) error {
	opts, err := q.options()
	if err != nil {
		return err
	}
	result, err := s.app.LoadCollectionValues(s.server, collectionArg(args), opts)
	if err != nil {
		return err
	}
	return writeDocuments(s.out, result.Documents)
}

func runAggregate(s *session, q *queryFlags, args []string) error {
	pipeline, err := document.ParsePipeline(args[2])
	if err != nil {
		return err
	}
	opts := types.NewMongoQueryOptions()
	opts.Aggregate = true
	opts.Operations = pipeline
	opts.ResultLimit = int64(q.limit)

	result, err := s.app.LoadCollectionValues(s.server, collectionArg(args), opts)
	if err != nil {
		return err
	}
	return writeDocuments(s.out, result.Documents)
}

func runGet(s *session, _ *queryFlags, args []string) error {
	doc, err := s.app.FindMongoDocument(s.server, collectionArg(args), document.ParseDocumentID(args[2]))
	if err != nil {
		return err
	}
	if doc == nil {
		return fmt.Errorf("no document with _id %s", args[2])
	}
	return writeDocuments(s.out, []bson.D{doc})
}

func runUpdate(s *session, _ *queryFlags, args []string) error {
	doc, err := document.ParseDocument(args[2])
	if err != nil {
		return err
	}
	return s.app.Update(s.server, collectionArg(args), doc)
}

func runDelete(s *session, _ *queryFlags, args []string) error {
	return s.app.Delete(s.server, collectionArg(args), document.ParseDocumentID(args[2]))
}

func runDropCollection(s *session, _ *queryFlags, args []string) error {
	return s.app.DropCollection(s.server, collectionArg(args))
}

func runDropDatabase(s *session, _ *queryFlags, args []string) error {
	return s.app.DropDatabase(s.server, args[0])
}
