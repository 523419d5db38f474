package srcgql

// targetFieldsFragment selects the fields of a thread target. Only repo
// targets carry data the inbox reads.
const targetFieldsFragment = `
fragment DiscussionThreadTargetFields on DiscussionThreadTarget {
	__typename
	... on DiscussionThreadTargetRepo {
		id
		repository {
			name
		}
		path
		branch {
			displayName
		}
		revision {
			displayName
		}
		selection {
			startLine
			startCharacter
			endLine
			endCharacter
			linesBefore
			lines
			linesAfter
		}
		url
		isIgnored
	}
}
`

// ThreadInboxItemsQuery fetches a thread and its target connection.
const ThreadInboxItemsQuery = `
query ThreadInboxItems($threadID: ID!) {
	node(id: $threadID) {
		__typename
		... on DiscussionThread {
			id
			idWithoutKind
			title
			type
			settings
			targets {
				nodes {
					__typename
					...DiscussionThreadTargetFields
				}
				totalCount
				pageInfo {
					hasNextPage
				}
			}
		}
	}
}
` + targetFieldsFragment

// CandidateFileQuery fetches a file blob at a revision.
const CandidateFileQuery = `
query CandidateFile($repo: String!, $rev: String!, $path: String!) {
	repository(name: $repo) {
		commit(rev: $rev) {
			blob(path: $path) {
				path
				content
				repository {
					name
				}
				commit {
					oid
				}
			}
		}
	}
}
`

// ViewerQuery returns the authenticated user.
const ViewerQuery = `
query Viewer {
	currentUser {
		username
	}
}
`
