package mcpserver

// TreeFormatContract describes the forest layout and the markdown
// conventions that MCP clients should follow when editing files.
const TreeFormatContract = `# Arbor Tree Format

The document tree is an ordered forest of folders and markdown files.
Every node has a stable string id. Ids never change on rename or move.

## Layout

` + "```" + `json
[
  {"id": "1712345678901", "type": "folder", "name": "docs", "children": [
    {"id": "1712345678902", "type": "file", "name": "readme.md", "content": "# Readme"}
  ]},
  {"id": "1712345678903", "type": "file", "name": "todo.md", "content": ""}
]
` + "```" + `

## Rules

1. **Folders** carry ` + "`" + `children` + "`" + ` (always an array, possibly empty). **Files** carry ` + "`" + `content` + "`" + `.
2. **Sibling order** is significant. New nodes and moved nodes are appended after the
   target's existing children.
3. **The top level** is addressed with the id ` + "`" + `root` + "`" + ` (or an empty parent id).
4. **Names** need not be unique. New folders are called "New Folder" and new files
   "New File.md"; rename them right after creating them.
5. **Moves** into the node itself or into one of its own descendants are rejected.
   Moves under a file are rejected.
6. **Deleting** a folder deletes its whole subtree.

## File content

Content is Markdown. Optional YAML frontmatter may set ` + "`" + `title` + "`" + ` and ` + "`" + `tags` + "`" + `;
without a frontmatter title the first H1 is used. Inline ` + "`" + `#tags` + "`" + ` are indexed too.

` + "```" + `markdown
---
title: Weekly standup
tags:
  - meeting-notes
---

# Weekly standup

Follow up on #roadmap items.
` + "```" + `
`
