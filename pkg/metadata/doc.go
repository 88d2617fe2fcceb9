// Package metadata discovers stack directories and reads and writes their
// .stack-meta.yaml files.
//
// A stacks root holds one directory per stack:
//
//	stacks/
//	  web/
//	    docker-compose.yml
//	    .stack-meta.yaml
//	  db/
//	    compose.yaml
//
// The metadata file is optional. A stack without one gets default values:
//
//	category: web
//	subcategory: frontend
//	tags: [public, prod]
//	depends_on: [db]
//	priority: 20
//	auto_start: true
//
// FileStore implements engine.MetadataStore; writes replace the file
// atomically. Watcher reports changes for validate --watch.
package metadata
