package bookmarks

// Convert extracts every link under folderName from an exported bookmarks
// file and parses each into an Album. The first link that fails to parse
// aborts the conversion; no partial result is returned.
func Convert(data []byte, folderName string) ([]*Album, error) {
	links, err := ExtractFolderLinks(string(data), folderName)
	if err != nil {
		return nil, err
	}

	albums := make([]*Album, 0, len(links))

	for _, link := range links {
		album, err := ParseLink(link)
		if err != nil {
			return nil, err
		}

		albums = append(albums, album)
	}

	return albums, nil
}
