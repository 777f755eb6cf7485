package dag

import "sort"

type PackageID uint32

// Node is one package and the packages it depends on.
type Node struct {
	Name string
	Deps []string
}

type PackageIndex struct {
	NameToID map[string]PackageID
	IDToName []string
}

// собрать уникальные имена (пакеты и их зависимости), sort.Strings, раздать ID по порядку
func BuildIndex(nodes []Node) PackageIndex {
	uniq := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		if n.Name != "" {
			uniq[n.Name] = struct{}{}
		}
		for _, dep := range n.Deps {
			if dep != "" {
				uniq[dep] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(uniq))
	for name := range uniq {
		names = append(names, name)
	}
	sort.Strings(names)

	nameToID := make(map[string]PackageID, len(names))
	for i, name := range names {
		nameToID[name] = PackageID(i)
	}

	return PackageIndex{
		NameToID: nameToID,
		IDToName: names,
	}
}
