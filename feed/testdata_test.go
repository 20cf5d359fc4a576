package feed

const validRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Blog</title>
    <link>https://example.com</link>
    <description>A test RSS feed</description>
    <language>en-us</language>
    <item>
      <title>First post</title>
      <link>https://example.com/post/1</link>
      <description>The first post</description>
      <guid>https://example.com/post/1</guid>
      <pubDate>Thu, 19 Feb 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second post</title>
      <link>https://example.com/post/2</link>
      <description>The second post</description>
      <pubDate>Thu, 19 Feb 2026 07:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Third post</title>
      <link>https://example.com/post/3</link>
      <description>The third post</description>
      <pubDate>Thu, 19 Feb 2026 06:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

const validAtom = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Blog</title>
  <link href="https://example.org/"/>
  <updated>2026-02-19T09:00:00Z</updated>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <entry>
    <title>Atom entry</title>
    <link href="https://example.org/atom/1"/>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2026-02-19T09:00:00Z</updated>
    <summary>Atom summary</summary>
  </entry>
</feed>`

// Four lines, cut off inside the channel title.
const truncatedRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Broken`

const mismatchedRSS = `<rss version="2.0">
<channel>
<title>Mismatch</title>
</rss>
`

const unknownEncodingRSS = `<?xml version="1.0" encoding="x-klingon"?>
<rss version="2.0"><channel><title>Encoded</title><item><title>One</title></item></channel></rss>`

const notAFeed = `<?xml version="1.0" encoding="UTF-8"?>
<html><body><p>hello</p></body></html>`
