package redis

import "fmt"

/*
	SCHEMA STORAGE:   <namespace>:COMPONENT_PATH_TO_SCHEMA -> hash of component path to JSON schema
	SNAPSHOT:         <namespace>:snapshot                 -> latest serialized world
	DIFF CHANNEL:     <namespace>:diff                     -> JSON patches between published snapshots
*/

func schemaStorageKey(namespace string) string {
	return fmt.Sprintf("%s:COMPONENT_PATH_TO_SCHEMA", namespace)
}

func snapshotKey(namespace string) string {
	return fmt.Sprintf("%s:snapshot", namespace)
}

// DiffChannel is the pub/sub channel that receives a patch every time a changed snapshot is published.
func DiffChannel(namespace string) string {
	return fmt.Sprintf("%s:diff", namespace)
}
